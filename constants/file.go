package constants

// PDFMagic is the byte signature every accepted upload must start with.
var PDFMagic = []byte("%PDF")

// PDFContentType is the only declared content type the intake accepts.
const PDFContentType = "application/pdf"

// MaxUploadBytes caps an uploaded nutrition PDF at 50MB.
const MaxUploadBytes = 50 << 20
