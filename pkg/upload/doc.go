// Package upload resolves files attached to a mutation call.
//
// Files never travel over the persistent channel. A call that carries files
// is sent as a multipart form on the one-shot HTTP path, one part per file
// under its form key, together with the upload token.
//
// Files come from a Source. DiskSource reads local paths and S3Source reads
// objects from S3; Resolver picks one by reference:
//
//	avatar=./me.png           local file
//	avatar=s3://bucket/me.png S3 object
package upload
