package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// indexPage is the operator dashboard. It follows /ws and prints each relay
// message as it arrives.
const indexPage = `<!doctype html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<title>Torrador</title>
<style>
body { font-family: monospace; background: #1b1411; color: #f3e6d8; margin: 2em; }
#state { white-space: pre; margin-bottom: 1em; }
#log { white-space: pre-wrap; max-height: 70vh; overflow-y: auto; border-top: 1px solid #6b4b3a; }
</style>
</head>
<body>
<h1>Torrador</h1>
<div id="state">aguardando leitura...</div>
<div id="log"></div>
<script>
(function () {
  var state = document.getElementById("state");
  var log = document.getElementById("log");
  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onmessage = function (ev) {
      var msg = JSON.parse(ev.data);
      if (msg.type === "state") {
        state.textContent = JSON.stringify(msg.data, null, 2);
        return;
      }
      if (msg.type === "message" && msg.data) {
        var line = document.createElement("div");
        line.textContent = "[" + msg.data.channel + "] " + JSON.stringify(msg.data.data);
        log.prepend(line);
        while (log.childNodes.length > 500) { log.removeChild(log.lastChild); }
      }
    };
    ws.onclose = function () { setTimeout(connect, 2000); };
  }
  connect();
})();
</script>
</body>
</html>
`

func (h *Handler) index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexPage))
}
