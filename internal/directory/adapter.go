package directory

import (
	"context"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/icao-pkd/pkd/internal/core"
	"github.com/icao-pkd/pkd/internal/log"
	"github.com/icao-pkd/pkd/internal/pkderr"
	"github.com/icao-pkd/pkd/internal/pool"
)

// Adapter is the core.DirectoryAdapter implementation: a primary pool
// for writes and round-robin read pools for searches, per spec.md
// §4.2's "read traffic is distributed across replicas".
type Adapter struct {
	primary  *pool.Pool
	replicas []*pool.Pool
	next     uint64
	dn       dnTemplates
	log      log.Logger
}

// New builds an Adapter over baseDN rooted at "dc=download,dc=pkd,<baseDN>".
// replicas may be empty, in which case all reads also go to primary.
func New(baseDN string, primary *pool.Pool, replicas []*pool.Pool, logger log.Logger) *Adapter {
	return &Adapter{
		primary:  primary,
		replicas: replicas,
		dn:       dnTemplates{baseDN: baseDN},
		log:      logger,
	}
}

func (a *Adapter) readPool() *pool.Pool {
	if len(a.replicas) == 0 {
		return a.primary
	}
	a.next++
	return a.replicas[a.next%uint64(len(a.replicas))]
}

// withRetry retries a transient-error operation up to 3 times with
// 100ms linear backoff, per spec.md §4.5 ("transient errors (network,
// server unavailable) -> up to 3 retries with 100 ms backoff").
func withRetry(op func() error) error {
	var lastErr error
	for attempt := 1; attempt <= 4; attempt++ {
		if err := op(); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt < 4 {
			time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
		}
	}
	return pkderr.DirectoryErr("directory operation failed after 4 attempts: %v", lastErr)
}

// ensureEntry creates dn with the given attributes if it doesn't
// already exist, treating AlreadyExists as success — the write
// idempotency spec.md §4.5 requires for parent-path nodes.
func (a *Adapter) ensureEntry(ctx context.Context, p *pool.Pool, dn string, objectClasses []string, attrs map[string][]string) error {
	return withRetry(func() error {
		h, err := p.Acquire(ctx)
		if err != nil {
			return err
		}
		defer h.Release(ctx)
		conn := pool.LDAPConn(h)

		req := ldap.NewAddRequest(dn, nil)
		req.Attribute("objectClass", objectClasses)
		for k, v := range attrs {
			req.Attribute(k, v)
		}
		if err := conn.Add(req); err != nil {
			if ldap.IsErrorWithCode(err, ldap.LDAPResultEntryAlreadyExists) {
				return nil
			}
			return err
		}
		return nil
	})
}

// EnsureCountry creates the per-country node and its parent DCs if
// missing, idempotently.
func (a *Adapter) EnsureCountry(ctx context.Context, alpha2 string) error {
	if err := a.ensureEntry(ctx, a.primary, a.dn.root(), []string{"dcObject", "organization"},
		map[string][]string{"o": {"download"}}); err != nil {
		return err
	}
	if err := a.ensureEntry(ctx, a.primary, a.dn.data(), []string{"dcObject", "organization"},
		map[string][]string{"o": {"data"}}); err != nil {
		return err
	}
	if err := a.ensureEntry(ctx, a.primary, a.dn.ncData(), []string{"dcObject", "organization"},
		map[string][]string{"o": {"nc-data"}}); err != nil {
		return err
	}
	return a.ensureEntry(ctx, a.primary, a.dn.country(alpha2), []string{"country"},
		map[string][]string{"c": {alpha2}})
}

// EnsureOrganisationalUnit creates the per-kind OU under a country node
// if missing, idempotently.
func (a *Adapter) EnsureOrganisationalUnit(ctx context.Context, kind core.Kind, alpha2 string) error {
	ou := a.dn.organisationalUnit(kind, alpha2)
	if kind == core.KindDSCNC {
		// Non-compliant DSCs live directly under the country node of
		// the nc-data subtree; no additional OU level to create.
		return nil
	}
	return a.ensureEntry(ctx, a.primary, ou, []string{"organizationalUnit"},
		map[string][]string{"ou": {kindOU(kind)}})
}

// UpsertCertificate writes a certificate entry, idempotent on its
// fingerprint DN. Certificates are immutable once stored (spec.md
// §4.5: "never [replaced] for immutable certificates") so a
// pre-existing entry is treated as success without comparing content.
func (a *Adapter) UpsertCertificate(ctx context.Context, cert *core.Certificate) error {
	dn := a.dn.certificateDN(cert.Kind, cert.Country, cert.Fingerprint)
	return a.ensureEntry(ctx, a.primary, dn, []string{"pkdDownload"}, map[string][]string{
		"cn":                   {cert.Fingerprint},
		"userCertificate;binary": {string(cert.DER)},
	})
}

// UpsertCRL writes a CRL entry at a DN derived from the issuer DN.
// Pre-existing content is replaced without comparing thisUpdate here;
// the newer-by-thisUpdate rule of spec.md §4.5 is applied by
// CRLRepository.Upsert, which only stores a CRL newer than the one it
// holds for the same issuer, and the reconciler pushes that stored row.
func (a *Adapter) UpsertCRL(ctx context.Context, crl *core.CRL) error {
	dn := a.dn.crlDN(crl.Country, crl.IssuerDN)
	return withRetry(func() error {
		h, err := a.primary.Acquire(ctx)
		if err != nil {
			return err
		}
		defer h.Release(ctx)
		conn := pool.LDAPConn(h)

		existing, err := conn.Search(ldap.NewSearchRequest(
			dn, ldap.ScopeBaseObject, ldap.NeverDerefAliases, 0, 0, false,
			"(objectClass=cRLDistributionPoint)", []string{"certificateRevocationList;binary"}, nil,
		))
		if err == nil && len(existing.Entries) > 0 {
			// Entry exists; the CRL being pushed is the one
			// CRLRepository.Upsert kept as the newest for this issuer,
			// so it is written over the existing content.
			req := ldap.NewModifyRequest(dn, nil)
			req.Replace("certificateRevocationList;binary", []string{string(crl.DER)})
			return conn.Modify(req)
		}

		req := ldap.NewAddRequest(dn, nil)
		req.Attribute("objectClass", []string{"cRLDistributionPoint"})
		req.Attribute("cn", []string{dn})
		req.Attribute("certificateRevocationList;binary", []string{string(crl.DER)})
		if err := conn.Add(req); err != nil {
			if ldap.IsErrorWithCode(err, ldap.LDAPResultEntryAlreadyExists) {
				return nil
			}
			return err
		}
		return nil
	})
}

// LookupCertificateBySubject scoped-searches for certificates under a
// kind/country OU whose subject matches dn. The directory stores raw
// DER, not parsed attributes, so candidates are returned for the
// caller (the Trust-Chain Validator) to parse and filter by subject —
// this adapter only narrows by OU.
func (a *Adapter) LookupCertificateBySubject(ctx context.Context, subjectDN string, kind core.Kind, country string) ([]*core.Certificate, error) {
	ou := a.dn.organisationalUnit(kind, country)
	var results []*core.Certificate
	err := withRetry(func() error {
		h, err := a.readPool().Acquire(ctx)
		if err != nil {
			return err
		}
		defer h.Release(ctx)
		conn := pool.LDAPConn(h)

		sr, err := conn.Search(ldap.NewSearchRequest(
			ou, ldap.ScopeSingleLevel, ldap.NeverDerefAliases, 0, 0, false,
			"(objectClass=pkdDownload)", []string{"userCertificate;binary", "cn"}, nil,
		))
		if err != nil {
			return err
		}
		results = make([]*core.Certificate, 0, len(sr.Entries))
		for _, e := range sr.Entries {
			der := e.GetRawAttributeValue("userCertificate;binary")
			if len(der) == 0 {
				continue
			}
			results = append(results, &core.Certificate{
				Kind:    kind,
				Country: country,
				DER:     der,
			})
		}
		return nil
	})
	return results, err
}

// LookupCRLByIssuer searches for a country's CRL at the deterministic
// issuer-DN-derived DN.
func (a *Adapter) LookupCRLByIssuer(ctx context.Context, issuerDN, country string) (*core.CRL, error) {
	dn := a.dn.crlDN(country, issuerDN)
	var crl *core.CRL
	err := withRetry(func() error {
		h, err := a.readPool().Acquire(ctx)
		if err != nil {
			return err
		}
		defer h.Release(ctx)
		conn := pool.LDAPConn(h)

		sr, err := conn.Search(ldap.NewSearchRequest(
			dn, ldap.ScopeBaseObject, ldap.NeverDerefAliases, 0, 0, false,
			"(objectClass=cRLDistributionPoint)", []string{"certificateRevocationList;binary"}, nil,
		))
		if err != nil {
			if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
				return nil
			}
			return err
		}
		if len(sr.Entries) == 0 {
			return nil
		}
		der := sr.Entries[0].GetRawAttributeValue("certificateRevocationList;binary")
		crl = &core.CRL{Country: country, IssuerDN: issuerDN, DER: der}
		return nil
	})
	return crl, err
}

// LookupByFingerprint fetches the single entry at a certificate's fixed
// fingerprint DN, used by the Reconciler to confirm a row already
// marked directory_stored still has a live entry.
func (a *Adapter) LookupByFingerprint(ctx context.Context, kind core.Kind, country, fingerprint string) (*core.Certificate, error) {
	dn := a.dn.certificateDN(kind, country, fingerprint)
	var cert *core.Certificate
	err := withRetry(func() error {
		h, err := a.readPool().Acquire(ctx)
		if err != nil {
			return err
		}
		defer h.Release(ctx)
		conn := pool.LDAPConn(h)

		sr, err := conn.Search(ldap.NewSearchRequest(
			dn, ldap.ScopeBaseObject, ldap.NeverDerefAliases, 0, 0, false,
			"(objectClass=pkdDownload)", []string{"userCertificate;binary"}, nil,
		))
		if err != nil {
			if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
				return nil
			}
			return err
		}
		if len(sr.Entries) == 0 {
			return nil
		}
		der := sr.Entries[0].GetRawAttributeValue("userCertificate;binary")
		cert = &core.Certificate{Kind: kind, Country: country, Fingerprint: fingerprint, DER: der}
		return nil
	})
	return cert, err
}

// CountByKind counts entries under a kind/country OU, used by
// sync-status reporting to compare directory counts against the
// database (spec.md §4.6's SyncStatusSnapshot).
func (a *Adapter) CountByKind(ctx context.Context, kind core.Kind, country string) (int, error) {
	ou := a.dn.organisationalUnit(kind, country)
	var count int
	err := withRetry(func() error {
		h, err := a.readPool().Acquire(ctx)
		if err != nil {
			return err
		}
		defer h.Release(ctx)
		conn := pool.LDAPConn(h)

		sr, err := conn.Search(ldap.NewSearchRequest(
			ou, ldap.ScopeSingleLevel, ldap.NeverDerefAliases, 0, 0, false,
			"(objectClass=pkdDownload)", []string{"cn"}, nil,
		))
		if err != nil {
			if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
				count = 0
				return nil
			}
			return err
		}
		count = len(sr.Entries)
		return nil
	})
	return count, err
}

var _ core.DirectoryAdapter = (*Adapter)(nil)
