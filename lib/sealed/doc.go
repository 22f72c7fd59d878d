// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed keeps the API key out of the settings file in
// plaintext. It wraps filippo.io/age for the three operations the CLI
// needs: generate an x25519 identity, encrypt a key to a recipient, and
// decrypt it with the identity from an identity file.
//
// Ciphertext is base64-encoded so it fits on one line of YAML
// (api_key_sealed). Identities and decrypted plaintext are returned as
// [secret.Buffer] values backed by mmap memory outside the Go heap.
//
// Key exports:
//
//   - [GenerateKeypair] -- new age x25519 identity in a secret.Buffer
//   - [Encrypt] -- encrypt to one or more age1... recipients
//   - [Decrypt] -- decrypt with an identity held in a secret.Buffer
//   - [ReadIdentityFile] -- load the identity line from an age key file
//   - [RecipientOf] -- derive the public recipient of an identity
package sealed
