// Package fingerprint computes structural content hashes of script values.
//
// Values are first converted into a small tagged model ([Value]: record,
// array or scalar), then serialised canonically and hashed. The model is
// type-agnostic: two records with the same keys and values hash
// equal no matter which constructor produced them, and record keys are
// ordered, so building an object literal or assigning the same properties one
// at a time yields the same [Fingerprint].
package fingerprint
