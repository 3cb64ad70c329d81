package parser

import (
	"github.com/icao-pkd/pkd/internal/core"
	"github.com/icao-pkd/pkd/internal/pkderr"
)

// PreviewItem summarises one container entry without persisting it:
// spec.md §6's /upload/certificate/preview is "parse-only, no
// persistence".
type PreviewItem struct {
	Kind        core.Kind
	Country     string
	Fingerprint string
	SubjectDN   string
	IssuerDN    string
	NotBefore   string
	NotAfter    string
	IsCRL       bool
	IsMasterList bool
}

// PreviewResult is the structural summary Preview returns.
type PreviewResult struct {
	Format core.UploadFormat
	Items  []PreviewItem
}

// Preview runs the same format-sniff and container-split logic Ingest
// uses, but never calls a repository or the trust-chain validator: it
// only reports what the container contains.
func Preview(filename string, data []byte, kindHint core.Kind) (*PreviewResult, error) {
	format := SniffFormat(filename, data)
	result := &PreviewResult{Format: format}

	switch format {
	case core.FormatLDIF:
		items, err := splitLDIF(data)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			result.Items = append(result.Items, previewLDIFItem(item))
		}
	case core.FormatML:
		ml, err := parseMasterList(data)
		if err != nil {
			return nil, err
		}
		result.Items = append(result.Items, previewCertificate(ml.MLSC))
		for _, csca := range ml.CSCAs {
			result.Items = append(result.Items, previewCertificate(csca))
		}
	case core.FormatPEM, core.FormatDER, core.FormatP7B:
		certs, err := parseCertificateFile(format, data, kindHint)
		if err != nil {
			return nil, err
		}
		for _, c := range certs.Certificates {
			result.Items = append(result.Items, previewCertificate(c))
		}
	case core.FormatCRL:
		crl, err := parseCRLFile(data)
		if err != nil {
			return nil, err
		}
		result.Items = append(result.Items, PreviewItem{
			Country: crl.Country, Fingerprint: crl.Fingerprint, IssuerDN: crl.IssuerDN, IsCRL: true,
		})
	case core.FormatDL:
		summary, err := parseDeviationList(data)
		if err != nil {
			return nil, err
		}
		result.Items = append(result.Items, PreviewItem{Fingerprint: summary.SignerFingerprint})
	default:
		return nil, pkderr.Unsupported("preview: unsupported upload format %q", format)
	}
	return result, nil
}

func previewCertificate(c *core.Certificate) PreviewItem {
	return PreviewItem{
		Kind: c.Kind, Country: c.Country, Fingerprint: c.Fingerprint,
		SubjectDN: c.SubjectDN, IssuerDN: c.IssuerDN,
		NotBefore: c.NotBefore.UTC().Format("2006-01-02T15:04:05Z"),
		NotAfter:  c.NotAfter.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func previewLDIFItem(item ldifItem) PreviewItem {
	return PreviewItem{
		Kind: item.Kind, Country: item.Country,
		IsCRL: item.IsCRL, IsMasterList: item.IsMasterList,
	}
}
