// Package model holds the records exchanged between the authorization server
// flows and the service collaborator, the request parameter view and the
// response accumulator, and the bearer token output model.
package model
