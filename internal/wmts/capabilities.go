package wmts

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// WMTS XML structures for parsing capabilities
type Capabilities struct {
	XMLName  xml.Name `xml:"Capabilities"`
	Contents Contents `xml:"Contents"`
}

type Contents struct {
	Layers []Layer `xml:"Layer"`
}

type Layer struct {
	Title              string              `xml:"http://www.opengis.net/ows/1.1 Title"`
	Abstract           string              `xml:"http://www.opengis.net/ows/1.1 Abstract"`
	Identifier         string              `xml:"http://www.opengis.net/ows/1.1 Identifier"`
	TileMatrixSetLinks []TileMatrixSetLink `xml:"TileMatrixSetLink"`
	ResourceURL        []ResourceURL       `xml:"ResourceURL"`
}

type TileMatrixSetLink struct {
	TileMatrixSet string `xml:"TileMatrixSet"`
}

type ResourceURL struct {
	Format       string `xml:"format,attr"`
	ResourceType string `xml:"resourceType,attr"`
	Template     string `xml:"template,attr"`
}

// LayerInfo is the subset of a WMTS layer the source registry needs.
type LayerInfo struct {
	Name          string `json:"name"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	TileMatrixSet string `json:"tileMatrixSet"`
	TemplateURL   string `json:"templateUrl"`
	Format        string `json:"format"`
}

// FetchCapabilities downloads and parses a WMTS capabilities document.
func FetchCapabilities(ctx context.Context, client *http.Client, url string) (*Capabilities, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch capabilities: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch capabilities: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return ParseCapabilities(data)
}

// ParseCapabilities decodes a capabilities XML document.
func ParseCapabilities(data []byte) (*Capabilities, error) {
	var caps Capabilities
	if err := xml.Unmarshal(data, &caps); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	if len(caps.Contents.Layers) == 0 {
		return nil, fmt.Errorf("no layers found in capabilities")
	}
	return &caps, nil
}

// GetLayers extracts tile layers; layers without a tile resource template are skipped.
func GetLayers(caps *Capabilities) []LayerInfo {
	var layers []LayerInfo
	for _, layer := range caps.Contents.Layers {
		info := LayerInfo{
			Name:        layer.Identifier,
			Title:       layer.Title,
			Description: layer.Abstract,
		}
		if len(layer.TileMatrixSetLinks) > 0 {
			info.TileMatrixSet = layer.TileMatrixSetLinks[0].TileMatrixSet
		}
		for _, resource := range layer.ResourceURL {
			if resource.ResourceType == "tile" {
				info.TemplateURL = resource.Template
				info.Format = resource.Format
				break
			}
		}
		if info.TemplateURL == "" {
			continue
		}
		layers = append(layers, info)
	}
	return layers
}

// ConvertTemplateToXYZ rewrites WMTS placeholders to the {z}/{x}/{y} form the map widget expects.
func ConvertTemplateToXYZ(template string) string {
	r := strings.NewReplacer(
		"{TileMatrix}", "{z}",
		"{TileCol}", "{x}",
		"{TileRow}", "{y}",
	)
	return r.Replace(template)
}
