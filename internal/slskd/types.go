package slskd

// TransferSucceeded is the state slskd reports for a finished, successful transfer.
const TransferSucceeded = "Completed, Succeeded"

// Search mirrors the search object returned by /api/v0/searches.
type Search struct {
	ID            string `json:"id"`
	SearchText    string `json:"searchText"`
	State         string `json:"state"`
	IsComplete    bool   `json:"isComplete"`
	FileCount     int    `json:"fileCount"`
	ResponseCount int    `json:"responseCount"`
}

// SearchResponse is the listing one peer returned for a search.
type SearchResponse struct {
	Username          string `json:"username"`
	Files             []File `json:"files"`
	LockedFiles       []File `json:"lockedFiles"`
	HasFreeUploadSlot bool   `json:"hasFreeUploadSlot"`
	UploadSpeed       int64  `json:"uploadSpeed"`
	QueueLength       int64  `json:"queueLength"`
}

// File is one file inside a SearchResponse. Optional attributes are pointers so
// that "absent" and "zero" stay distinguishable.
type File struct {
	Filename   string `json:"filename"`
	Size       int64  `json:"size"`
	Extension  string `json:"extension,omitempty"`
	Length     *int   `json:"length,omitempty"`
	BitRate    *int   `json:"bitRate,omitempty"`
	BitDepth   *int   `json:"bitDepth,omitempty"`
	SampleRate *int   `json:"sampleRate,omitempty"`
	IsLocked   bool   `json:"isLocked"`
}

// DownloadRequest is the body element of an enqueue call.
type DownloadRequest struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// UserTransfers groups every transfer with one peer.
type UserTransfers struct {
	Username    string              `json:"username"`
	Directories []TransferDirectory `json:"directories"`
}

type TransferDirectory struct {
	Directory string     `json:"directory"`
	FileCount int        `json:"fileCount"`
	Files     []Transfer `json:"files"`
}

// Transfer is the state of one file transfer.
type Transfer struct {
	ID               string  `json:"id"`
	Username         string  `json:"username"`
	Direction        string  `json:"direction"`
	Filename         string  `json:"filename"`
	Size             int64   `json:"size"`
	State            string  `json:"state"`
	BytesTransferred int64   `json:"bytesTransferred"`
	PercentComplete  float64 `json:"percentComplete"`
}

// Find returns the transfer for the given remote filename, if present.
func (u UserTransfers) Find(filename string) (Transfer, bool) {
	for _, dir := range u.Directories {
		for _, f := range dir.Files {
			if f.Filename == filename {
				return f, true
			}
		}
	}
	return Transfer{}, false
}
