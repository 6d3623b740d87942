// Package pokepay provides a client for the Pokepay partner API.
//
// Every call is a form POST carrying three fields:
//   - partner_client_id: the partner's client ID
//   - data: the encrypted request envelope (see package envelope)
//   - request_method: the logical HTTP method of the operation
//
// A 2xx reply is a JSON object whose response_data field holds the
// encrypted reply. Any other status is returned as-is for the caller
// to inspect.
//
// # Basic Usage
//
//	client, err := pokepay.NewClient(&pokepay.ClientConfig{
//	    ClientID:     "your-client-id",
//	    ClientSecret: "base64url-shared-key",
//	    BaseURL:      "https://partnerapi-sandbox.pokepay.jp",
//	    CertFile:     "/path/to/cert.pem",
//	    KeyFile:      "/path/to/key.pem",
//	})
//
//	resp, err := client.Echo(ctx, "hello")
//
//	resp, err = client.Call(ctx, pokepay.OpGetShop, pokepay.Params{
//	    "shop_id": shopID,
//	})
//
// # Error Handling
//
// Errors are typed. ErrorKind maps any error to a short category:
//
//	resp, err := client.Call(ctx, pokepay.OpGetAccount, params)
//	if err != nil {
//	    var decErr *pokepay.DecryptionError
//	    if errors.As(err, &decErr) {
//	        // wrong shared key or corrupted reply
//	    }
//	}
//	if !resp.OK {
//	    log.Printf("HTTP %d: %s", resp.StatusCode, resp.Body)
//	}
package pokepay
