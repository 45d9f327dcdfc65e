// Package users manages SoftwareHub accounts and sign-in.
//
// Service covers administration (list, create, update, password reset,
// delete, stats) and AuthService the self-service side (login, profile,
// password change, token refresh). Both record their actions through an
// audit.Writer. Failed logins are recorded with a null actor ID under the
// submitted email.
//
// Store implements audit.ActorDirectory so audit reads can attach the live
// user behind each event.
package users
