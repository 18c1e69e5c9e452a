// Package property mounts the property endpoints:
//
//	POST   /properties               create, guarded by the plan's property limit
//	GET    /properties               list active properties
//	DELETE /properties/{propertyID}  soft delete, frees plan capacity
//
// Creation failures from the billing guard surface as 403 responses carrying
// either the read-only reason or the current usage and limit, provided the
// error handler includes the billing module's MapError.
package property
