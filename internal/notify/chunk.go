package notify

// chunkIDs splits ids into batches of at most size elements. The store caps
// "id = ANY(...)" binds, so every id-set lookup goes through here; merged
// results must not depend on where the batch boundaries fall.
func chunkIDs(ids []string, size int) [][]string {
	if size <= 0 {
		size = defaultStoreBatch
	}
	if len(ids) == 0 {
		return nil
	}

	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
