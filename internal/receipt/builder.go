// internal/receipt/builder.go
package receipt

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pos-print-bridge/internal/codec"
	"pos-print-bridge/internal/escpos"
	"pos-print-bridge/internal/layout"
	"pos-print-bridge/internal/model"
)

// Builder turns receipt JSON into printer bytes
type Builder struct {
	logos    *LogoResolver
	renderer *layout.Renderer
	logger   *zap.Logger
}

// NewBuilder creates a receipt builder
func NewBuilder(logos *LogoResolver, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if logos == nil {
		logos = NewLogoResolver(LogoOptions{}, logger)
	}
	return &Builder{
		logos:    logos,
		renderer: layout.NewRenderer(logger),
		logger:   logger.With(zap.String("component", "receipt_builder")),
	}
}

// Build parses, resolves the logo, lays out and encodes a receipt.
// The full byte stream is returned before anything is written anywhere.
func (b *Builder) Build(ctx context.Context, jsonText string) ([]byte, error) {
	payload, err := Decode(jsonText)
	if err != nil {
		return nil, err
	}

	doc, err := b.Resolve(ctx, payload)
	if err != nil {
		return nil, err
	}

	return b.Encode(doc)
}

// Resolve attaches the best available logo to the parsed document
func (b *Builder) Resolve(ctx context.Context, payload *Payload) (*model.ReceiptDocument, error) {
	doc := payload.Document
	logo := b.logos.Resolve(ctx, LogoRequest{Embedded: payload.LogoBase64, URL: payload.LogoURL})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if logo == "" {
		return doc, nil
	}

	data, err := codec.DecodeBase64(logo)
	if err != nil {
		b.logger.Warn("Discarding undecodable logo", zap.Error(&model.ImageError{Stage: "base64", Err: err}))
		return doc, nil
	}
	doc.LogoImage = data
	return doc, nil
}

// Encode renders and encodes a document
func (b *Builder) Encode(doc *model.ReceiptDocument) ([]byte, error) {
	stream := b.renderer.Render(doc)
	data, err := escpos.Encode(stream)
	if err != nil {
		return nil, fmt.Errorf("failed to encode receipt: %w", err)
	}

	b.logger.Debug("Receipt built",
		zap.Int("width", doc.EffectiveWidth()),
		zap.Int("items", len(doc.Items)),
		zap.Int("ops", stream.Len()),
		zap.Int("bytes", len(data)),
	)
	return data, nil
}
