// Package software manages the SoftwareHub application inventory.
//
// Each record describes one service: where it is hosted, how access is
// granted and revoked, SSO and MFA posture, log retention and criticality.
// Every mutation, filtered listing and CSV export is recorded through an
// audit.Writer under the acting principal.
package software
