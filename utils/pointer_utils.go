package utils

// Int32Ptr converts an int32 to *int32
func Int32Ptr(i int32) *int32 {
	return &i
}

// Int64Ptr converts an int64 to *int64
func Int64Ptr(i int64) *int64 {
	return &i
}
