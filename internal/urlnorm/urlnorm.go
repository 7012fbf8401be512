package urlnorm

import (
	"net/url"
	"strings"

	"github.com/rohmanhakim/crawlcore/pkg/hashutil"
	"github.com/rohmanhakim/crawlcore/pkg/urlutil"
)

/*
Responsibilities

- Canonicalize a raw URL into a single comparable form
- Fingerprint the canonical form into the hash stored as url_hash
- Extract the registrable domain (eTLD+1) used for gate/queue routing

Every other component keys its records on the fingerprint this package
produces; normalization must therefore be pure, deterministic and
idempotent, never dependent on crawl history.
*/

// DefaultDenyParams is the tracking-parameter deny-list applied during
// canonicalization. Loaded once and shared by value (maps are safe for
// concurrent reads once fully built and never mutated afterward).
var DefaultDenyParams = denyListOf(
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"gclid", "fbclid", "msclkid", "mc_cid", "mc_eid", "ref", "ref_src",
)

func denyListOf(keys ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return m
}

// Normalizer canonicalizes, fingerprints and resolves the registrable
// domain for raw URLs. It holds no mutable state so a single instance is
// safe to share across discovery, crawler and indexer workers.
type Normalizer struct {
	denyParams map[string]struct{}
	hashAlgo   hashutil.HashAlgo
}

// NewNormalizer builds a Normalizer using the given tracking-parameter
// deny-list and fingerprint algorithm.
func NewNormalizer(denyParams map[string]struct{}, hashAlgo hashutil.HashAlgo) Normalizer {
	return Normalizer{denyParams: denyParams, hashAlgo: hashAlgo}
}

// NewDefaultNormalizer builds a Normalizer with the default tracking
// deny-list and blake3 fingerprinting, the combination SPEC_FULL names
// for production use.
func NewDefaultNormalizer() Normalizer {
	return NewNormalizer(DefaultDenyParams, hashutil.HashAlgoBLAKE3)
}

// Normalize returns the canonical form of rawURL.
func (n Normalizer) Normalize(rawURL url.URL) url.URL {
	return urlutil.Canonicalize(rawURL, n.denyParams)
}

// Hash fingerprints a canonical URL into the identifier stored as
// url_hash everywhere downstream. Callers must pass an already-canonical
// URL (i.e. the output of Normalize) so two equivalent spellings always
// hash identically.
func (n Normalizer) Hash(canonicalURL url.URL) (string, error) {
	return hashutil.HashBytes([]byte(canonicalURL.String()), n.hashAlgo)
}

// NormalizeAndHash is the composed operation discovery/crawler/indexer
// actually call: canonicalize then fingerprint in one step.
func (n Normalizer) NormalizeAndHash(rawURL url.URL) (url.URL, string, error) {
	canonical := n.Normalize(rawURL)
	hash, err := n.Hash(canonical)
	if err != nil {
		return canonical, "", err
	}
	return canonical, hash, nil
}

// RegistrableDomain returns the eTLD+1 of host (e.g. "blog.example.co.uk"
// -> "example.co.uk"). It is table-driven over a small embedded subset of
// the public suffix list covering the common multi-label TLDs; anything
// not found in the table falls back to the last two labels, which is
// correct for the overwhelming majority of single-label TLDs (".com",
// ".org", ".io", ...).
func RegistrableDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}

	suffixLabels := 1
	for _, multi := range multiLabelPublicSuffixes {
		if strings.HasSuffix(host, "."+multi) || host == multi {
			suffixLabels = strings.Count(multi, ".") + 1
			break
		}
	}

	registrableLabels := suffixLabels + 1
	if registrableLabels >= len(labels) {
		return host
	}
	return strings.Join(labels[len(labels)-registrableLabels:], ".")
}

// multiLabelPublicSuffixes is a small, deliberately incomplete subset of
// the public suffix list: only the multi-label suffixes common enough to
// matter for a crawl target's registrable-domain grouping. Anything not
// listed here is treated as a single-label suffix (the correct default
// for ".com", ".net", ".io", ...).
var multiLabelPublicSuffixes = []string{
	"co.uk", "org.uk", "ac.uk", "gov.uk",
	"com.au", "net.au", "org.au",
	"co.jp", "ne.jp", "or.jp",
	"com.br", "com.cn", "com.mx",
	"co.nz", "co.za", "co.in",
	"github.io",
}
