// Package secrets encrypts small values, such as saved credentials, before
// they reach persistent storage.
//
// A Box is built from a 32-byte master key and a purpose string; HKDF-SHA256
// derives the actual AES-256-GCM key, so the same master key yields unrelated
// keys for different purposes.
//
//	master, err := secrets.ParseKey(os.Getenv("CREDENTIALS_KEY"))
//	box, err := secrets.NewBox(master, "credentials")
//	sealed, err := box.Seal("hunter2")
//	plain, err := box.Open(sealed)
//
// Sealed values start with Prefix; IsSealed lets callers accept values that
// were stored before encryption was turned on.
package secrets
