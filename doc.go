/*
Package rose provides the request dispatch of a web application: a
mapping tree of the resources, the matching of the request paths and
methods, and the chains of engines processing the requests.

# Mapping

The routes bind an ordered list of engines to a method and a path
pattern. The patterns are made of literal segments, variables ({id} or
:id), constrained variables ({id:[0-9]+}) and a trailing catch-all
(*rest or {rest*}):

	m := routing.New(routing.Options{})
	m.Add("GET", "/items/{id}", params, getItem)
	m.Add("POST", "/items", createItem)
	m.Freeze()

When matching, literal segments win over variables, and variables win
over the catch-all. The failure of a deeper segment backtracks to the
next alternative.

# Engines

Every engine receives the request context, the match result and the
chain. It may do work before and after proceeding with the chain, or
short-circuit it by returning without proceeding. The built-in engines
are registered by engines/builtin and can be referenced from YAML route
files:

	routes:
	- method: GET
	  path: /items/{id}
	  engines:
	  - flowId
	  - name: params
	    args: [id, int]
	  - name: invoke
	    args: [getItem]

The named handlers of the invoke engine are registered in an
invoke.Table, and passed to Run in the Options.

# Running

Run starts the request listener and the support listener, serving the
metrics and the introspection of the mapping under /rose-info/. On
SIGTERM or SIGINT, it stops the listeners gracefully, and destroys every
engine of the mapping once.
*/
package rose
