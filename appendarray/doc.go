// Package appendarray implements growable on-disk .npy arrays.
//
// An Array is created in replace-if-exists mode, extended batch by batch, and
// closed exactly once. The header is reserved at a fixed size on creation and
// rewritten with the final shape by Close, so the file is a valid .npy array
// only after a successful Close. Abort releases the handle and leaves the
// partial file in place.
//
// Float arrays are two-dimensional (rows, width) and may be stored as <f4 or
// <f2. Int64 arrays are one-dimensional.
//
//	arr, err := appendarray.Create(fs.Default, "token_embeddings.npy", appendarray.WithWidth(384))
//	if err != nil {
//		return err
//	}
//	defer arr.Abort()
//	if err := arr.AppendFloat32(rows); err != nil {
//		return err
//	}
//	return arr.Close()
package appendarray
