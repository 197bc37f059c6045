package mathpix

import (
	"context"
	"net/http"
)

type ocrTextResponse struct {
	Text        string `json:"text"`
	LatexStyled string `json:"latex_styled"`
	Error       string `json:"error"`
}

type snipTextResponse struct {
	TextDisplay string `json:"text_display"`
}

// OCRImage recognizes an image and returns Mathpix Markdown.
func (c *Client) OCRImage(ctx context.Context, path string) (string, error) {
	if c.UsesOCRAPI() {
		var out ocrTextResponse
		if err := c.upload(ctx, "image ocr", "/v3/text", path, http.StatusOK, &out); err != nil {
			return "", err
		}
		if out.LatexStyled != "" {
			return out.LatexStyled, nil
		}
		return out.Text, nil
	}

	var out snipTextResponse
	if err := c.upload(ctx, "image ocr", "/v1/snips-multipart", path, http.StatusCreated, &out); err != nil {
		return "", err
	}
	return out.TextDisplay, nil
}
