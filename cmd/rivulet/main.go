package main

import (
	"fmt"
	"os"
)

const usage = `Usage:
  rivulet server [--config path]                        start API server (foreground)
  rivulet start | stop | status                         manage the background server
  rivulet run --file path [--input text] [--provider p] run a definition once
  rivulet validate --file path                          check a definition
  rivulet import-n8n --file path [--out path]           convert an n8n export
  rivulet push --file path                              store a definition on the server
  rivulet exec --workflow id [--input text]             execute a stored workflow on the server
  rivulet get --execution id                            fetch a recorded execution
`

func main() {
	if len(os.Args) < 2 {
		exit(runServer(nil))
		return
	}
	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "server":
		err = runServer(args)
	case "start":
		err = startDaemon()
	case "stop":
		err = stopDaemon()
	case "status":
		err = statusDaemon()
	case "run":
		err = runCmd(args, os.Stdout)
	case "validate":
		err = validateCmd(args, os.Stdout)
	case "import-n8n":
		err = importCmd(args, os.Stdout)
	case "push":
		err = pushCmd(args, os.Stdout)
	case "exec":
		err = execCmd(args, os.Stdout)
	case "get":
		err = getCmd(args, os.Stdout)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	exit(err)
}

func exit(err error) {
	if err == nil {
		return
	}
	if code, ok := err.(exitCode); ok {
		os.Exit(int(code))
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

// exitCode ends the process with a status but no message of its own.
type exitCode int

func (c exitCode) Error() string { return fmt.Sprintf("exit status %d", int(c)) }
