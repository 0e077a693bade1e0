package middleware

import (
	"compress/gzip"

	ginzip "github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// CompressionConfig represents compression middleware configuration
type CompressionConfig struct {
	// Compression level (1-9, default: 6)
	Level int
	// Exclude paths from compression
	ExcludePaths []string
}

// DefaultCompressionConfig returns default compression configuration
func DefaultCompressionConfig() *CompressionConfig {
	return &CompressionConfig{
		Level:        6,
		ExcludePaths: []string{"/metrics", "/health", "/ws"},
	}
}

// CompressionMiddleware gzips responses for clients that accept it.
func CompressionMiddleware(config *CompressionConfig) gin.HandlerFunc {
	if config == nil {
		config = DefaultCompressionConfig()
	}
	level := config.Level
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	return ginzip.Gzip(level, ginzip.WithExcludedPaths(config.ExcludePaths))
}
