package database

import "strings"

var cmdTable = make(map[string]*command)

type command struct {
	name     string
	executor ExecFunc
	// arity means allowed number of cmdArgs, arity < 0 means len(args) >= -arity.
	// for example: the arity of `get` is 2, `del` is -2
	arity int
}

// registerCommand registers a normal command, which only read or modify a limited number of keys
func registerCommand(name string, executor ExecFunc, arity int) {
	name = strings.ToLower(name)
	cmdTable[name] = &command{
		name:     name,
		executor: executor,
		arity:    arity,
	}
}
