// Copyright 2015 Zalando SE
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Package logging implements application log instrumentation and Apache
combined access log.

# Application Log

The application log uses the logrus package:

https://github.com/sirupsen/logrus

To send messages to the application log, import this package and use its
methods. Example:

	import log "github.com/sirupsen/logrus"

	func doSomething() {
	    log.Errorf("nothing to do")
	}

During startup initialization, it is possible to redirect the log output
from the default /dev/stderr to another file, and to set a common prefix
for each log entry. Setting the prefix may be used to distinguish between
the application log and the access log, when both are written to the same
output.

Components that accept a Logger option default to DefaultLog, which
forwards to the logrus standard logger.

# Access Log

The access log prints HTTP access information in the Apache combined
access log format, extended with the duration of the request, the
requested host, the flow id and the identity of the matched mapping. To
output the log in JSON format, set AccessLogJSONEnabled in the options.
*/
package logging
