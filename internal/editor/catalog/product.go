package catalog

import "strings"

// ============================================================
// Catalog Product
// ============================================================

// Product is the subset of a catalog product the editor reads. Catalog
// payloads carry many more fields; they are ignored.
type Product struct {
	ID                      string `json:"id,omitempty"`
	SKU                     string `json:"sku,omitempty"`
	Name                    string `json:"name,omitempty"`
	PrimaryImageURL         string `json:"primary_image_url,omitempty"`
	SwatchImageURL          string `json:"swatch_image_url,omitempty"`
	Image                   string `json:"image,omitempty"`
	PrimaryImageStoragePath string `json:"primary_image_storage_path,omitempty"`
}

// TextureID picks the image used as the product's texture. An empty result
// means the product has nothing to apply.
func TextureID(p Product) string {
	for _, candidate := range []string{
		p.PrimaryImageURL,
		p.SwatchImageURL,
		p.Image,
		p.PrimaryImageStoragePath,
	} {
		if s := strings.TrimSpace(candidate); s != "" {
			return s
		}
	}
	return ""
}
