// Package storage defines the object tree that publications traverse, the
// ObjectStore contract implemented by the storage adapters, sentinel errors
// and tenant context helpers.
//
// Objects are addressed by slash-separated absolute paths rooted at "/".
// Adapters (memory, postgres) scope every object by the tenant found in the
// request context, so two tenants may publish different trees under the
// same paths.
package storage
