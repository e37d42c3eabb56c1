package qdrant

// Exported for tests.
var (
	PointFromChunk = pointFromChunk
	ChunkFromPoint = chunkFromPoint
	ScanPages      = scanPages
)
