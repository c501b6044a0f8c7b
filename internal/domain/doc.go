// Package domain defines the core types of the engagement tracking engine.
//
// Types in this package are value objects shared by handlers, services and
// repositories. They carry no database or HTTP dependencies.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON/DB tags are allowed (they're metadata, not behavior)
//   - Pure helpers on the types are allowed
//   - Constants, enums and the shared error taxonomy belong here
package domain
