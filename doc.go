// Package insurance implements a healthcare insurance API: accounts with
// roles, insurance policies and reimbursement claims.
//
// Credentials:
//   - PasswordHasher stores bcrypt digests. Authenticator checks them, applies
//     optional login throttling through an AttemptStore and issues HS256
//     tokens with the TokenService.
//   - Authorizer resolves bearer tokens back into a Principal. The role is
//     always re-read from the Accounts store so role changes and deactivation
//     take effect before the token expires.
//
// Lifecycle:
//   - PolicyManager validates coverage windows and amounts and decides whether
//     a policy is active on a given day. Both boundary dates are covered.
//   - ClaimManager accepts claims against active policies only and records
//     reviews through ClaimStateMachine. Reviews never approve more than was
//     claimed; paid is reachable only by a forced administrator update.
//
// HTTP:
//   - NewApp builds the fiber app with the JSON error handler and the health
//     route. Service.Mount registers the /api routes behind RouteGuard.
//
// Stores live in the repository package: bun for postgres and sqlite, plus
// in-memory implementations used by tests and the self hosted smoke run.
package insurance
