// Package httpsig signs outgoing requests with the draft-cavage HTTP
// Signatures scheme used across the fediverse.
//
// The signed parameters are, in order:
//
//	(request-target)  "<lowercased method> <path>[?<query>]"
//	host              URL host, including any explicit port
//	date              HTTP-date of the signing instant
//	digest            "SHA-256=<base64>", only when a body is sent
//
// The signing string joins them as "name: value" lines. The signature is
// RSA-SHA256 over that string, base64 encoded, and travels in a Signature
// header of the form
//
//	keyId="<actor URL>",algorithm="rsa-sha256",headers="<names>",signature="<sig>"
//
// Client signs with github.com/go-fed/httpsig; Sign and Header render the
// same header directly.
package httpsig
