// Package errors provides coded, actionable errors for the imclient
// command line.
//
// Each error code maps to a category, a short message and a detail text.
// Commands attach the underlying error and a hint:
//
//	err := errors.New("E110").
//	    Wrap(cause).
//	    WithSuggestion("Check server.address in imclient.json")
//
//	errors.PrintError(err)
//	// ERROR E110: Connection failed
//	//
//	//   The session could not be established.
//	//
//	//   Cause: network: session closed: dial tcp 127.0.0.1:8000: connection refused
//	//
//	//   Hint: Check server.address in imclient.json
package errors
