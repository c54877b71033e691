package server

// Version is reported in the extensions of results when enabled
const Version = "0.1.0"

// VersionExtension is the extensions key holding the version
const VersionExtension = "cf-graphql-server"
