package d3d12

func alignUp(v, a uint64) uint64 {
	return (v + a - 1) &^ (a - 1)
}

// ComputeFootprints reproduces GetCopyableFootprints for single-plane
// formats: rows are padded to TextureDataPitchAlignment and subresources
// placed at TextureDataPlacementAlignment. The returned total excludes the
// padding after the last row.
//
// Drivers without a native implementation use it directly.
func ComputeFootprints(desc *ResourceDesc, first, num uint32, baseOffset uint64) ([]PlacedSubresourceFootprint, uint64) {
	if desc.Dimension == ResourceDimensionBuffer {
		fp := PlacedSubresourceFootprint{
			Offset: baseOffset,
			Footprint: SubresourceFootprint{
				Format:   desc.Format,
				Width:    uint32(desc.Width),
				Height:   1,
				Depth:    1,
				RowPitch: uint32(alignUp(desc.Width, TextureDataPitchAlignment)),
			},
			NumRows:        1,
			RowSizeInBytes: desc.Width,
		}
		return []PlacedSubresourceFootprint{fp}, desc.Width
	}

	mips := desc.MipCount()
	out := make([]PlacedSubresourceFootprint, 0, num)
	offset := alignUp(baseOffset, TextureDataPlacementAlignment)
	var total uint64
	for i := first; i < first+num; i++ {
		w, h, depth := desc.MipExtent(i % mips)
		rowSize := desc.Format.RowPitch(uint32(w))
		rows := desc.Format.Rows(h)
		pitch := alignUp(rowSize, TextureDataPitchAlignment)

		out = append(out, PlacedSubresourceFootprint{
			Offset: offset,
			Footprint: SubresourceFootprint{
				Format:   desc.Format,
				Width:    uint32(w),
				Height:   h,
				Depth:    depth,
				RowPitch: uint32(pitch),
			},
			NumRows:        rows,
			RowSizeInBytes: rowSize,
		})
		span := pitch*uint64(rows)*uint64(depth) - (pitch - rowSize)
		total = offset + span - baseOffset
		offset = alignUp(offset+pitch*uint64(rows)*uint64(depth), TextureDataPlacementAlignment)
	}
	return out, total
}

// PackedSize returns the byte size of fps with rows tightly packed, which
// is the layout UploadData and ReadbackData use.
func PackedSize(fps []PlacedSubresourceFootprint) uint64 {
	var n uint64
	for _, fp := range fps {
		n += fp.RowSizeInBytes * uint64(fp.NumRows) * uint64(fp.Footprint.Depth)
	}
	return n
}
