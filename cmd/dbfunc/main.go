package main

import "github.com/marcodd23/go-micro-dbfunc/cmd/dbfunc/command"

func main() {
	command.Execute()
}
