// Studyhall AI is the agent plane of the LMS: a catalog of course agents,
// tool execution, course-content retrieval and the chat turn loop.
//
// Commands:
//   - serve   run the HTTP API
//   - agents  print the agent catalog
//   - tools   print the tool catalog
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
