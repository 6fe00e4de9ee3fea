// Package interfaces documents the core abstractions used throughout the application.
//
// # Interface Categories
//
// ## Service Interfaces
//
//   - BookService, UserService, CheckoutService: what the HTTP controllers
//     need from the services layer (internal/http/stores.go)
//   - OverdueRunner: on-demand overdue sweep (internal/http/stores.go)
//   - Authenticator: password registration and login (internal/http/stores.go)
//
// ## Authentication Interfaces
//
//   - Verifier: turns a bearer token into an Identity (internal/auth/token.go).
//     TokenService verifies locally issued JWTs, RemoteVerifier asks an
//     external auth service.
//   - UserStore: user lookups and first-sight creation (internal/auth/service.go)
//
// ## Side-Effect Interfaces
//
//   - EventDispatcher: receives committed changes (internal/services/interfaces.go)
//   - Mirror: the realtime store that changes are pushed to (internal/tasks/sync_entity.go)
//   - Notifier: delivers overdue notices (internal/overdue/sweeper.go)
//   - MetadataProvider: bibliographic data by ISBN (internal/services/interfaces.go)
//
// # Adding a New Side Effect
//
// Services never call external systems inside a transaction. To react to a
// committed change:
//
//  1. Implement EventDispatcher, or add a task type to internal/tasks/ and
//     enqueue it from QueueDispatcher.
//
//     type AuditDispatcher struct { ... }
//
//     func (d *AuditDispatcher) Dispatch(ctx context.Context, events ...services.ChangeEvent)
//
//     var _ services.EventDispatcher = (*AuditDispatcher)(nil)
//
//  2. Wire it in entrypoint.go
//
// # Adding a New Metadata Provider
//
// To add a new source of book metadata (e.g., Google Books):
//
//  1. Implement MetadataProvider in internal/metadata/
//
//     func (c *GoogleBooksClient) SearchByISBN(ctx context.Context, isbn string) (*BookMetadata, error)
//
//     var _ services.MetadataProvider = (*GoogleBooksClient)(nil)
//
//  2. Select it in entrypoint.go
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// See checks.go for the full list.
package interfaces
