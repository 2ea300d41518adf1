// Copyright 2016 Maarten Everts. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fiatshamir implements the Fiat-Shamir zero-knowledge identification protocol.
//
// An Authority owns a modulus N = p*q whose factors are discarded as soon as N is computed.
// A user registers the public key v = s^2 mod N, where the secret s is derived from a password
// by a KeyDeriver. To identify, a Prover holding s convinces a Verifier holding v in R rounds:
//
//	Prover                               Verifier
//	r in [1, N-1), x = r^2 mod N  -- x ->
//	                              <- e --  e in {0, 1}
//	y = r * s^e mod N             -- y ->  y != 0 and y^2 = x * v^e mod N
//
// A prover that does not know s survives a round with probability at most 1/2, so a session of
// R rounds accepts such a prover with probability at most 2^-R. Verifier.Verify runs a session
// against any Committer; Verifier.Serve and Prover.Prove run it over a transport.Conn.
//
// Every source of randomness and the password hash are passed in explicitly. See
// NewSeededRandomSource for reproducible sessions.
package fiatshamir
