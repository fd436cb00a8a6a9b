package vectorindex

import (
	"gorm.io/gorm"

	"github.com/podwise/hrap/internal/apperrors"
	"github.com/podwise/hrap/internal/config"
	"github.com/podwise/hrap/internal/types/interfaces"
)

// New dispatches on cfg.Retrieval.VectorDriver to build the configured
// Vector Index Client, mirroring the teacher's RETRIEVE_DRIVER env dispatch
// in handler/system.go's getVectorStoreEngine.
func New(cfg *config.Config, pgDB *gorm.DB) (interfaces.VectorIndexClient, error) {
	switch cfg.Retrieval.VectorDriver {
	case "qdrant":
		return NewQdrantDriver(cfg.QdrantAddr, "chunks")
	case "pgvector":
		if pgDB == nil {
			return nil, apperrors.NewConfigError("vectorindex: pgvector driver selected but no postgres connection configured", nil)
		}
		return NewPgVectorDriver(pgDB, "chunk_embeddings"), nil
	default:
		return nil, apperrors.NewConfigError("vectorindex: unknown driver "+cfg.Retrieval.VectorDriver, nil)
	}
}
