// Package mmap provides read-only memory mapping of finished array files.
//
// The dataset reader maps tokens.npy, offsets.npy and the embedding arrays
// so that slicing a document span out of a multi-gigabyte corpus does not
// copy the whole file into the heap.
//
//	m, err := mmap.Open("tokens.npy")
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//	_ = m.Advise(mmap.AccessSequential)
//	data := m.Bytes()
//
// Mappings are read-only; writers always go through the fs package.
package mmap
