// Package content publishes a storage.ObjectStore tree.
//
// URL paths map onto object paths. Each traversal step resolves, in order,
// a "++skin++Name" marker, a child object, a property of the current
// object, the "contents" listing, and for PUT a null resource standing in
// for the object about to be created. Objects carrying a Permission are
// only reachable by principals holding that scope.
//
// GET, HEAD and POST render the object (or its default view), PUT stores
// the request body, DELETE removes a subtree and OPTIONS reports the
// allowed methods. PUT and DELETE need the "write" scope.
package content
