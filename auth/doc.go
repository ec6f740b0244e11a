// Package auth implements registration, login and identity checks for
// healthtrack.
//
// Passwords are stored as bcrypt hashes in the credential store, API clients
// receive a signed bearer token (valid for 7 days, there is no revocation
// list: rotating the signing secret invalidates every token) and browser
// clients receive a server side session referenced by a signed cookie.
//
// Two optional policies run in front of the credential check on login:
//
//   - a CAPTCHA verifier, which is always consulted first;
//   - a login attempt Guard, which locks a username after repeated
//     failures and rejects every attempt until the lock expires, even with
//     the right password.
//
// The Guard state lives in process memory. It is lost on restart and is not
// shared between instances, running more than one instance behind a load
// balancer multiplies the number of guesses an attacker gets.
package auth
