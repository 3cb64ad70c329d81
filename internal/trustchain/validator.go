// Package trustchain implements the Trust-Chain Validator (spec.md
// §4.4), grounded on the teacher's own certificate-issuance policy
// checks in ca/policy-authority.go, generalised from "is this CSR safe
// to sign" to "is this observed certificate's chain valid". An
// injectable jmhodges/clock.Clock keeps validity-window checks
// deterministic in tests, the same way sa.SQLStorageAuthority takes
// one.
package trustchain

import (
	"context"
	"crypto/x509"
	"sort"
	"strings"

	"github.com/jmhodges/clock"
	zx509 "github.com/zmap/zcrypto/x509"
	zlint "github.com/zmap/zlint/v3"
	"github.com/zmap/zlint/v3/lint"

	"github.com/icao-pkd/pkd/internal/core"
	"github.com/icao-pkd/pkd/internal/log"
	"github.com/icao-pkd/pkd/internal/pki"
	"github.com/icao-pkd/pkd/internal/pkderr"
)

// Validator evaluates one certificate's trust chain against the
// directory's CSCA/LC population and CRLs.
type Validator struct {
	dir   core.DirectoryAdapter
	clock clock.Clock
	log   log.Logger
	// lintRegistry is resolved lazily via zlint's global registry; a
	// field only exists here so tests can substitute a narrower set.
	lintRegistry lint.Registry
}

// New builds a Validator, defaulting to the full zlint registry and a
// real-time clock.
func New(dir core.DirectoryAdapter, logger log.Logger) *Validator {
	return &Validator{dir: dir, clock: clock.New(), log: logger, lintRegistry: zlint.GlobalRegistry()}
}

// WithClock overrides the Validator's clock, used by tests to pin
// "now" around a certificate's validity window.
func (v *Validator) WithClock(c clock.Clock) *Validator {
	v.clock = c
	return v
}

// Validate runs the six-step pipeline of spec.md §4.4 against a
// previously-persisted Certificate (cert.DER must be set) and returns
// the ValidationResult to be stored alongside it.
func (v *Validator) Validate(ctx context.Context, cert *core.Certificate) (*core.ValidationResult, error) {
	result := &core.ValidationResult{
		CertificateID: cert.ID,
		CreatedAt:     v.clock.Now(),
	}

	parsed, err := pki.ParseX509(cert.DER)
	if err != nil {
		result.Status = core.StatusError
		result.Reason = err.Error()
		return result, nil
	}
	subject := parsed.Cert

	now := v.clock.Now()
	result.CurrentlyExpired = now.After(subject.NotAfter)
	result.ValidityPeriodValid = !now.Before(subject.NotBefore)
	if now.Before(subject.NotBefore) {
		result.Status = core.StatusInvalid
		result.Reason = "NOT_YET_VALID"
		return result, nil
	}

	if !keyUsageSatisfied(cert.Kind, subject) {
		result.Status = core.StatusInvalid
		result.Reason = "KEY_USAGE_MISMATCH"
		return result, nil
	}
	result.KeyUsageValid = true

	if cert.Kind == core.KindCSCA {
		if !pki.VerifySelfSignature(subject) {
			result.Status = core.StatusInvalid
			result.Reason = "SELF_SIGNATURE_FAILED"
			return result, nil
		}
		result.TrustChainValid = true
		result.SignatureValid = true
	} else {
		issuer, issuerFP, err := v.resolveIssuer(ctx, subject)
		if err != nil {
			result.Status = core.StatusError
			result.Reason = err.Error()
			return result, nil
		}
		if issuer == nil {
			result.Status = core.StatusInvalid
			result.Reason = "CSCA_NOT_FOUND"
			return result, nil
		}
		if !pki.VerifyX509Signature(subject, issuer) {
			result.Status = core.StatusInvalid
			result.Reason = "TRUST_CHAIN_SIGNATURE_FAILED"
			return result, nil
		}
		result.TrustChainValid = true
		result.SignatureValid = true
		result.ResolvedIssuerFP = issuerFP
	}

	revoked, crlExpired, crlUnavailable, revReason, err := v.checkRevocation(ctx, subject, parsed.SerialHex)
	if err != nil {
		result.Status = core.StatusError
		result.Reason = err.Error()
		return result, nil
	}
	result.CRLChecked = !crlUnavailable
	if revoked {
		result.Revoked = true
		result.Status = core.StatusInvalid
		result.Reason = "REVOKED: " + revReason
		return result, nil
	}

	result.LintFindings = runLints(v.lintRegistry, cert.DER)

	switch {
	case crlExpired:
		result.Reason = "CRL_EXPIRED"
	case crlUnavailable:
		result.Reason = pkderr.New(pkderr.CRLUnavailable, "no CRL directory entry for issuer").Error()
	}
	if result.CurrentlyExpired {
		result.Status = core.StatusExpiredValid
	} else {
		result.Status = core.StatusValid
	}
	return result, nil
}

// keyUsageSatisfied enforces spec.md §4.4 step 2's per-kind key-usage
// requirements.
func keyUsageSatisfied(kind core.Kind, cert *x509.Certificate) bool {
	switch kind {
	case core.KindCSCA:
		return cert.KeyUsage&x509.KeyUsageCertSign != 0 && cert.KeyUsage&x509.KeyUsageCRLSign != 0
	case core.KindLC:
		return cert.KeyUsage&x509.KeyUsageCertSign != 0
	case core.KindDSC, core.KindDSCNC:
		return cert.KeyUsage&x509.KeyUsageDigitalSignature != 0
	default:
		return true
	}
}

// resolveIssuer implements spec.md §4.4 step 4's scoring policy:
// exact CN match wins, then longest-validity-intersecting, then
// lowest serial; a Link Certificate is accepted as a one-hop bridge
// to its own resolved CSCA.
func (v *Validator) resolveIssuer(ctx context.Context, subject *x509.Certificate) (*x509.Certificate, string, error) {
	country := core.ExtractCountryFromDN(subject.Issuer.String())
	issuerCN := core.ExtractSubjectCN(subject.Issuer.String())

	cscaCandidates, err := v.dir.LookupCertificateBySubject(ctx, subject.Issuer.String(), core.KindCSCA, country)
	if err != nil {
		return nil, "", err
	}
	lcCandidates, err := v.dir.LookupCertificateBySubject(ctx, subject.Issuer.String(), core.KindLC, country)
	if err != nil {
		return nil, "", err
	}

	if best, fp := scoreCandidates(cscaCandidates, issuerCN, subject); best != nil {
		if pki.VerifySelfSignature(best) {
			return best, fp, nil
		}
		// A CSCA that fails its own self-signature is never accepted
		// as an issuer (spec.md §4.4 tie-break policy); fall through to
		// the Link Certificate path in case a bridge covers it.
	}

	if best, fp := scoreCandidates(lcCandidates, issuerCN, subject); best != nil {
		bridgedCSCA, _, err := v.resolveIssuer(ctx, best)
		if err != nil || bridgedCSCA == nil {
			return nil, "", err
		}
		return best, fp, nil
	}

	return nil, "", nil
}

// scoreCandidates applies the CN-match / validity-intersection /
// lowest-serial tie-break to a set of candidate issuer certificates.
func scoreCandidates(candidates []*core.Certificate, issuerCN string, subject *x509.Certificate) (*x509.Certificate, string) {
	type scored struct {
		cert *x509.Certificate
		fp   string
		rank int // 0 = exact CN, 1 = partial containment, 2 = fallback
	}
	var ranked []scored
	for _, c := range candidates {
		parsed, err := pki.ParseX509(c.DER)
		if err != nil {
			continue
		}
		cn := core.ExtractSubjectCN(parsed.Cert.Subject.String())
		rank := 2
		if strings.EqualFold(cn, issuerCN) {
			rank = 0
		} else if issuerCN != "" && strings.Contains(strings.ToLower(cn), strings.ToLower(issuerCN)) {
			rank = 1
		}
		ranked = append(ranked, scored{cert: parsed.Cert, fp: parsed.Fingerprint, rank: rank})
	}
	if len(ranked) == 0 {
		return nil, ""
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].rank != ranked[j].rank {
			return ranked[i].rank < ranked[j].rank
		}
		iIntersects := !subject.NotBefore.Before(ranked[i].cert.NotBefore) && !subject.NotBefore.After(ranked[i].cert.NotAfter)
		jIntersects := !subject.NotBefore.Before(ranked[j].cert.NotBefore) && !subject.NotBefore.After(ranked[j].cert.NotAfter)
		if iIntersects != jIntersects {
			return iIntersects
		}
		iValidity := ranked[i].cert.NotAfter.Sub(ranked[i].cert.NotBefore)
		jValidity := ranked[j].cert.NotAfter.Sub(ranked[j].cert.NotBefore)
		if iValidity != jValidity {
			return iValidity > jValidity
		}
		return ranked[i].cert.SerialNumber.Cmp(ranked[j].cert.SerialNumber) < 0
	})
	return ranked[0].cert, ranked[0].fp
}

// checkRevocation implements spec.md §4.4 step 6. crlUnavailable is set
// when the directory carries no CRL at all for the issuer, distinct
// from crlExpired (a CRL exists but is past its NextUpdate).
func (v *Validator) checkRevocation(ctx context.Context, subject *x509.Certificate, serialHex string) (revoked, crlExpired, crlUnavailable bool, reason string, err error) {
	country := core.ExtractCountryFromDN(subject.Issuer.String())
	crl, err := v.dir.LookupCRLByIssuer(ctx, subject.Issuer.String(), country)
	if err != nil {
		return false, false, false, "", err
	}
	if crl == nil {
		return false, false, true, "", nil
	}
	parsed, err := pki.ParseCRL(crl.DER)
	if err != nil {
		return false, false, false, "", err
	}
	if now := v.clock.Now(); now.After(parsed.List.NextUpdate) {
		crlExpired = true
	}
	if parsed.IsRevoked(serialHex) {
		return true, crlExpired, false, "certificate serial present in CRL", nil
	}
	return false, crlExpired, false, "", nil
}

// runLints attaches non-blocking zlint findings (SPEC_FULL.md's
// supplemented feature), never changing the PASS/FAIL vocabulary
// spec.md §4.4 defines. zlint lints against zcrypto's x509.Certificate,
// not the stdlib type, so the certificate is parsed a second time with
// zcrypto here.
func runLints(reg lint.Registry, der []byte) []core.LintFinding {
	zc, err := zx509.ParseCertificate(der)
	if err != nil {
		return nil
	}
	result := zlint.LintCertificateEx(zc, reg)
	if result == nil {
		return nil
	}
	findings := make([]core.LintFinding, 0, len(result.Results))
	for name, res := range result.Results {
		if res.Status == lint.Pass || res.Status == lint.NA {
			continue
		}
		findings = append(findings, core.LintFinding{
			LintName: name,
			Status:   res.Status.String(),
			Details:  res.Details,
		})
	}
	return findings
}
