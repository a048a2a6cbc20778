// Command enroll captures, verifies and uploads face images for students and
// staff against the edu-admin API.
package main

import (
	"fmt"
	"os"
)

func main() {
	cli := &commandLine{
		out:       os.Stdout,
		newClient: newAPIClient,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
