// Package connection provides the HTTP transport used by authctl.
//
// HTTPClient is the network primitive behind the session manager: it
// normalises the server address, stamps the User-Agent and applies the
// configured timeout and trusted CA bundle. It knows nothing about
// credentials; Authorization headers are added by the session layer.
package connection
