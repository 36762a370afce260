package camera

import "fmt"

// ZoomProbeScript builds the injected fragment that reads the zoom index
// out of the foreign app's private component state. It starts at the
// first camera tile, finds the framework-linkage property (reserved
// prefix names the framework attaches to DOM nodes), and walks the linked
// component records upward a bounded number of hops looking for the
// zoom-index property. The result, or -1, lands on the marker node as a
// data attribute for the Go side to poll.
func ZoomProbeScript(tileSelector, markerID string) string {
	return fmt.Sprintf(`(function () {
  var marker = document.getElementById(%q);
  if (!marker) { return; }
  var report = function (v) { marker.setAttribute('data-zoom-index', String(v)); };
  try {
    var tile = document.querySelector(%q);
    if (!tile) { report(-1); return; }
    var node = tile;
    for (var depth = 0; depth < 12 && node; depth++) {
      var keys = Object.keys(node);
      for (var i = 0; i < keys.length; i++) {
        var key = keys[i];
        if (key.indexOf('__reactFiber$') !== 0 && key.indexOf('__reactInternalInstance$') !== 0) {
          continue;
        }
        var record = node[key];
        for (var hops = 0; record && hops < 32; hops++) {
          var props = record.memoizedProps || record.pendingProps;
          if (props && typeof props.zoomedCameraIndex === 'number') {
            report(props.zoomedCameraIndex);
            return;
          }
          record = record.return;
        }
      }
      node = node.parentElement;
    }
    report(-1);
  } catch (err) {
    report(-1);
  }
})();`, markerID, tileSelector)
}

// HotkeyListenerScript builds the page-side keydown listener feeding the
// digit binding. The page filters out modified keys and text-field focus;
// the Go handler filters out non-dashboard pages.
func HotkeyListenerScript() string {
	return fmt.Sprintf(`(function () {
  if (window.__camdeckHotkeysInstalled) { return; }
  window.__camdeckHotkeysInstalled = true;
  document.addEventListener('keydown', function (e) {
    if (e.ctrlKey || e.altKey || e.metaKey || e.shiftKey) { return; }
    var t = e.target;
    if (t && (t.tagName === 'INPUT' || t.tagName === 'TEXTAREA' || t.isContentEditable)) { return; }
    if (e.key >= '0' && e.key <= '9' && typeof window.%s === 'function') {
      window.%s(e.key);
    }
  }, true);
})();`, HotkeyBinding, HotkeyBinding)
}
