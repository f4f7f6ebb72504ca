package models

// TemplateName is one of the fixed resume layout styles.
type TemplateName string

const (
	TemplateMinimalistClassic   TemplateName = "Minimalist Classic"
	TemplateModernCreative      TemplateName = "Modern Creative"
	TemplateOnePageProfessional TemplateName = "One-page Professional"
)

// TemplateInfo holds the preview image and landing page of a template.
type TemplateInfo struct {
	ImageURL string `json:"image_url"`
	LinkURL  string `json:"link_url"`
}
