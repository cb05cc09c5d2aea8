// Package password hashes and verifies account passwords with Argon2id.
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verification reads the cost parameters back from the stored hash, so a
// Config change never locks out existing accounts. [Argon2.NeedsUpgrade]
// reports hashes that should be re-hashed on the next successful login.
//
// Password strength rules live with the sign-up and reset flows, not here.
package password
