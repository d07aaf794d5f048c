package http

// callbackPage receives the provider redirect. The id_token only exists in
// the URL fragment, which browsers never send to the server, so the page
// posts it to the complete endpoint itself.
const callbackPage = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Signing in</title>
</head>
<body>
<p id="status">Signing in&hellip;</p>
<script>
(function () {
  var hash = window.location.hash.replace(/^#/, "");
  var params = new URLSearchParams(hash);
  var status = document.getElementById("status");
  var finish = function (message) {
    if (window.opener) {
      window.opener.postMessage(message, window.location.origin);
      window.close();
    } else if (message.ok) {
      window.location.replace("/");
    }
  };
  if (!params.get("id_token")) {
    status.textContent = params.get("error") || "Missing id_token";
    finish({ type: "zklogin", ok: false, error: status.textContent });
    return;
  }
  fetch("/api/auth/google/complete", {
    method: "POST",
    credentials: "include",
    headers: { "Content-Type": "application/json" },
    body: JSON.stringify({ state: params.get("state") || "", hash: hash })
  })
    .then(function (res) { return res.json().then(function (body) { return { ok: res.ok, body: body }; }); })
    .then(function (res) {
      status.textContent = res.ok ? "Signed in" : res.body.error;
      finish({ type: "zklogin", ok: res.ok, session: res.ok ? res.body : null, error: res.ok ? null : res.body.error });
    })
    .catch(function (err) {
      status.textContent = String(err);
      finish({ type: "zklogin", ok: false, error: String(err) });
    });
})();
</script>
</body>
</html>
`
