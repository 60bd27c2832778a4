package log

const (
	// FldFile is the name of the log field for storing file name information
	FldFile = "file"
	// FldPath is the name of the log field for storing a directory path
	FldPath = "path"
	// FldTransport is the name of the log field for storing a transport name
	FldTransport = "transport"
	// FldSession is the name of the log field for storing the session ID
	FldSession = "session"
	// FldUser is the name of the log field for storing the ID of the currently active user
	FldUser = "user"
	// FldVersion is the version number of the application
	FldVersion = "ver"
	// FldID is the ID of an entity used in the log entry
	FldID = "id"
	// FldTitle is the title of the performance an entry is about
	FldTitle = "title"
	// FldFolder is the ID of a remote folder
	FldFolder = "folder"
	// FldBucket is the object storage bucket a folder lives in
	FldBucket = "bucket"
	// FldBackend names the storage backend in use
	FldBackend = "backend"
	// FldDriver is the database driver in use
	FldDriver = "driver"
	// FldCount is a number of affected items
	FldCount = "count"
)
