// Package auth resolves request identity from layered signals and manages the
// credential lifecycle behind it.
//
// Identity resolution:
//   - Resolver answers "who is making this request" by trying the session,
//     HTTP Basic credentials, and the remember cookie in that order. The first
//     outcome, anonymous included, is memoized for the rest of the request.
//     Remember cookies rotate on every successful use so a stolen cookie has a
//     bounded useful life.
//   - Recognition is the weaker "have we seen this device" question. It is
//     answered independently of login via a long-lived recognition cookie and
//     never expires a principal out.
//
// Credentials:
//   - Passwords are stored as deterministic salted digests. Credentials.Apply
//     enforces the current-password gate, confirmation matching, and length
//     bounds atomically: either every change lands or none does.
//   - Accounts start unactivated and cannot authenticate until their
//     activation code is redeemed.
//
// Tokens:
//   - TokenIssuer grants and revokes remember tokens. A short-lived grant of
//     the same token doubles as the password reset capability.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter describing login, logout,
//     rotation, activation, and password reset events. Sinks run best-effort
//     (errors are logged) so you can forward to a database or queue without
//     blocking authentication.
package auth
