package repositories

// RunContract lets tests outside the package check a repository against the shared behaviour
var RunContract = testContract
