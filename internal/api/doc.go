// Package api exposes the resource and admin operations over HTTP. Handlers
// decode and validate the request, call one service method, and map the
// result or error to a status code and a JSON body; they hold no state of
// their own.
package api
