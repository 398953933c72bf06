package world

import "fmt"

// MergeChunks merges the blocks of the source chunk into the destination
// chunk, used to combine a ceiling dimension's inverted chunks with the
// primary dimension's chunks in the same grid.
//
// A destination block is only replaced if the source improves its solidity:
// air is replaced by any non-air source block, a non-air insubstantial block
// only by a solid source block. Solid destination blocks are never touched.
// Light levels travel with the replacing block, and block entity state is
// relocated when the replacing material carries any. All entities of the
// source are appended to the destination; merge is expected to run exactly
// once per chunk pair.
//
// The chunks must share the same vertical range; a mismatch is a
// configuration error and is returned as such.
func MergeChunks(src, dst Chunk) error {
	if src.MinHeight() != dst.MinHeight() || src.MaxHeight() != dst.MaxHeight() {
		return fmt.Errorf("world: merge chunks: vertical range mismatch: source [%d, %d), destination [%d, %d)",
			src.MinHeight(), src.MaxHeight(), dst.MinHeight(), dst.MaxHeight())
	}
	for y := dst.MinHeight(); y < dst.MaxHeight(); y++ {
		for x := 0; x < ChunkSize; x++ {
			for z := 0; z < ChunkSize; z++ {
				dstMat := dst.Material(x, y, z)
				if dstMat.Solid() {
					continue
				}
				srcMat := src.Material(x, y, z)
				var improves bool
				if dstMat.Air() {
					improves = !srcMat.Air()
				} else {
					improves = srcMat.Solid()
				}
				if !improves {
					continue
				}
				dst.SetMaterial(x, y, z, srcMat)
				dst.SetBlockLight(x, y, z, src.BlockLight(x, y, z))
				dst.SetSkyLight(x, y, z, src.SkyLight(x, y, z))
				if srcMat.Properties().BlockEntity {
					moveBlockEntity(dst, src, x, y, z)
				}
			}
		}
	}
	for _, e := range src.Entities() {
		dst.AddEntity(e)
	}
	return nil
}

// moveBlockEntity relocates the block entity record at the chunk-local
// column (x, z) and height y from the source chunk to the destination chunk,
// removing any record already present at the destination coordinate so no
// duplicates survive the merge.
func moveBlockEntity(dst, src Chunk, x, y, z int) {
	blockX := int(src.Pos().X())<<4 + x
	blockZ := int(src.Pos().Z())<<4 + z

	dst.RemoveBlockEntityAt(blockX, y, blockZ)
	for _, be := range src.BlockEntities() {
		if be.X == blockX && be.Y == y && be.Z == blockZ {
			src.RemoveBlockEntityAt(blockX, y, blockZ)
			dst.AddBlockEntity(be)
			return
		}
	}
}
