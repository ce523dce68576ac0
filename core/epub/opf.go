package epub

import (
	"encoding/xml"
	"fmt"
	"time"
)

// Fixed names and media types of the EPUB container.
const (
	MimeType       = "application/epub+zip"
	MimeTypeFile   = "mimetype"
	ContainerFile  = "META-INF/container.xml"
	PackageFile    = "package.opf"
	MediaTypeXHTML = "application/xhtml+xml"

	NavID    = "htmltoc"
	NavHref  = NavID + ".xhtml"
	NavTitle = "Table of Contents"

	// ChapterExt is appended to chapter ids to form their archive names.
	ChapterExt = ".xhtml"
)

// containerXML points readers at the package document.
const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container xmlns="urn:oasis:names:tc:opendocument:xmlns:container" version="1.0">
  <rootfiles>
    <rootfile full-path="package.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`

// ManifestItem is one file listed in the package manifest.
type ManifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties string
}

// SpineItem is one entry of the reading order.
type SpineItem struct {
	IDRef string
}

// Metadata is the Dublin Core subset written to the package document.
type Metadata struct {
	Identifier string
	Title      string
	Creator    string
	Language   string
	Modified   time.Time
}

type opfPackage struct {
	XMLName          xml.Name     `xml:"http://www.idpf.org/2007/opf package"`
	Version          string       `xml:"version,attr"`
	UniqueIdentifier string       `xml:"unique-identifier,attr"`
	Metadata         opfMetadata  `xml:"metadata"`
	Manifest         []opfItem    `xml:"manifest>item"`
	Spine            []opfItemRef `xml:"spine>itemref"`
}

type opfMetadata struct {
	DC         string       `xml:"xmlns:dc,attr"`
	Identifier dcIdentifier `xml:"dc:identifier"`
	Title      string       `xml:"dc:title"`
	Creator    string       `xml:"dc:creator,omitempty"`
	Language   string       `xml:"dc:language"`
	Meta       []opfMeta    `xml:"meta"`
}

type dcIdentifier struct {
	ID    string `xml:"id,attr"`
	Value string `xml:",chardata"`
}

type opfMeta struct {
	Property string `xml:"property,attr"`
	Value    string `xml:",chardata"`
}

type opfItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr,omitempty"`
}

type opfItemRef struct {
	IDRef string `xml:"idref,attr"`
}

// buildPackage renders the root package document.
func buildPackage(meta Metadata, manifest []ManifestItem, spine []SpineItem) ([]byte, error) {
	pkg := opfPackage{
		Version:          "3.0",
		UniqueIdentifier: "uid",
		Metadata: opfMetadata{
			DC:         "http://purl.org/dc/elements/1.1/",
			Identifier: dcIdentifier{ID: "uid", Value: meta.Identifier},
			Title:      meta.Title,
			Creator:    meta.Creator,
			Language:   meta.Language,
			Meta: []opfMeta{{
				Property: "dcterms:modified",
				Value:    meta.Modified.UTC().Format("2006-01-02T15:04:05Z"),
			}},
		},
	}
	for _, m := range manifest {
		pkg.Manifest = append(pkg.Manifest, opfItem(m))
	}
	for _, s := range spine {
		pkg.Spine = append(pkg.Spine, opfItemRef(s))
	}

	out, err := xml.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling package document: %w", err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}
