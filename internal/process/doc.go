// Package process owns the single child-process slot of the supervisor.
//
// A Manager moves through four states:
//
//	NoProcess --Start--> Running --Terminate--> Terminating --exit--> NoProcess
//	                        |
//	                        +--exit on its own--> Stopped --Start--> Running
//
// At most one child exists at any time. The Manager is not safe for
// concurrent use: the supervisor drives it from its event loop and consumes
// exit notifications from Done on the same goroutine.
package process
