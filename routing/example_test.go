package routing_test

import (
	"context"
	"fmt"
	"log"

	"github.com/zalando/rose/routing"
)

func Example() {
	greet := routing.Func("greet", func(_ *routing.Rose, mr *routing.MatchResult, _ any, _ *routing.Chain) (any, error) {
		return "hello " + mr.Variable("name"), nil
	})

	audit := routing.Func("audit", func(rose *routing.Rose, _ *routing.MatchResult, instruction any, chain *routing.Chain) (any, error) {
		result, err := chain.Proceed(instruction)
		fmt.Printf("%s %s -> %v\n", rose.Method(), rose.Path(), result)
		return result, err
	})

	m := routing.New(routing.Options{MatchingOptions: routing.IgnoreTrailingSlash})
	if err := m.Add("GET", "/hello/{name}", audit, greet); err != nil {
		log.Fatal(err)
	}

	m.Freeze()

	mr, err := m.Resolve("GET", "/hello/world/")
	if err != nil {
		log.Fatal(err)
	}

	rose := routing.NewRose(context.Background(), m, "GET", "/hello/world/")
	result, err := routing.NewChain(rose, mr).Proceed(nil)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(result)
	fmt.Println(m.Count("/hello", true))

	// Output:
	// GET /hello/world/ -> hello world
	// hello world
	// 1
}
