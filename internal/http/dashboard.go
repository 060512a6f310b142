package http

// dashboardHTML is the single-page admin dashboard: conversation list,
// message view, and system prompt editor over the JSON API.
const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>WhatsApp AI Admin</title>
<style>
  * { box-sizing: border-box; margin: 0; padding: 0; }
  body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; background: #111b21; color: #e9edef; height: 100vh; display: flex; flex-direction: column; }
  header { background: #202c33; padding: 12px 20px; display: flex; align-items: center; justify-content: space-between; }
  header h1 { font-size: 16px; font-weight: 600; }
  header button { background: none; border: 1px solid #8696a0; color: #8696a0; border-radius: 4px; padding: 4px 12px; cursor: pointer; }
  main { flex: 1; display: flex; min-height: 0; }
  #convos { width: 280px; border-right: 1px solid #2a3942; overflow-y: auto; }
  #convos .item { padding: 12px 16px; cursor: pointer; border-bottom: 1px solid #1f2c33; }
  #convos .item:hover, #convos .item.active { background: #2a3942; }
  #convos .key { font-size: 14px; }
  #convos .meta { font-size: 12px; color: #8696a0; margin-top: 2px; }
  #chat { flex: 1; display: flex; flex-direction: column; min-width: 0; }
  #messages { flex: 1; overflow-y: auto; padding: 16px; display: flex; flex-direction: column; gap: 6px; }
  .msg { max-width: 65%; padding: 8px 12px; border-radius: 8px; font-size: 14px; white-space: pre-wrap; word-break: break-word; }
  .msg.user { background: #202c33; align-self: flex-start; }
  .msg.bot { background: #005c4b; align-self: flex-end; }
  .msg .ts { display: block; font-size: 11px; color: #8696a0; margin-top: 4px; }
  #prompt-panel { border-top: 1px solid #2a3942; padding: 12px 16px; background: #202c33; }
  #prompt-panel textarea { width: 100%; height: 90px; background: #111b21; color: #e9edef; border: 1px solid #2a3942; border-radius: 4px; padding: 8px; font-size: 13px; resize: vertical; }
  #prompt-panel .row { display: flex; justify-content: space-between; align-items: center; margin-top: 8px; }
  #prompt-panel button { background: #00a884; border: none; color: #111b21; border-radius: 4px; padding: 6px 16px; cursor: pointer; font-weight: 600; }
  #prompt-status { font-size: 12px; color: #8696a0; }
  #login { position: fixed; inset: 0; background: #111b21; display: flex; align-items: center; justify-content: center; }
  #login form { background: #202c33; padding: 32px; border-radius: 8px; width: 320px; display: flex; flex-direction: column; gap: 12px; }
  #login input { background: #111b21; color: #e9edef; border: 1px solid #2a3942; border-radius: 4px; padding: 10px; }
  #login button { background: #00a884; border: none; color: #111b21; border-radius: 4px; padding: 10px; cursor: pointer; font-weight: 600; }
  #login .err { color: #f15c6d; font-size: 13px; min-height: 16px; }
  .hidden { display: none !important; }
</style>
</head>
<body>
<div id="login" class="hidden">
  <form id="login-form">
    <h1>WhatsApp AI Admin</h1>
    <input id="login-user" placeholder="Username" autocomplete="username">
    <input id="login-pass" type="password" placeholder="Password" autocomplete="current-password">
    <div class="err" id="login-err"></div>
    <button type="submit">Sign in</button>
  </form>
</div>
<header>
  <h1>WhatsApp AI Admin</h1>
  <button id="logout">Logout</button>
</header>
<main>
  <div id="convos"></div>
  <div id="chat">
    <div id="messages"></div>
    <div id="prompt-panel">
      <textarea id="prompt" placeholder="System prompt"></textarea>
      <div class="row">
        <span id="prompt-status"></span>
        <button id="prompt-save">Save prompt</button>
      </div>
    </div>
  </div>
</main>
<script>
let token = sessionStorage.getItem('token') || '';
let selectedKey = null;

async function api(path, opts = {}) {
  opts.headers = Object.assign({'Content-Type': 'application/json'}, opts.headers);
  if (token) opts.headers['Authorization'] = 'Bearer ' + token;
  const res = await fetch(path, opts);
  if (res.status === 401) { showLogin(); throw new Error('unauthorized'); }
  if (!res.ok) throw new Error('request failed: ' + res.status);
  return res.json();
}

function showLogin() { document.getElementById('login').classList.remove('hidden'); }
function hideLogin() { document.getElementById('login').classList.add('hidden'); }

document.getElementById('login-form').addEventListener('submit', async (e) => {
  e.preventDefault();
  const body = JSON.stringify({
    username: document.getElementById('login-user').value,
    password: document.getElementById('login-pass').value,
  });
  const res = await fetch('/api/login', {method: 'POST', headers: {'Content-Type': 'application/json'}, body});
  if (!res.ok) { document.getElementById('login-err').textContent = 'Invalid credentials'; return; }
  token = (await res.json()).token;
  sessionStorage.setItem('token', token);
  hideLogin();
  refresh();
});

document.getElementById('logout').addEventListener('click', () => {
  token = '';
  sessionStorage.removeItem('token');
  showLogin();
});

async function loadConversations() {
  const data = await api('/api/messages');
  const el = document.getElementById('convos');
  el.innerHTML = '';
  for (const c of data.conversations) {
    const item = document.createElement('div');
    item.className = 'item' + (c.conversation_key === selectedKey ? ' active' : '');
    item.innerHTML = '<div class="key"></div><div class="meta"></div>';
    item.querySelector('.key').textContent = c.conversation_key;
    item.querySelector('.meta').textContent =
      c.message_count + ' messages · ' + new Date(c.last_activity).toLocaleString();
    item.addEventListener('click', () => { selectedKey = c.conversation_key; loadMessages(); loadConversations(); });
    el.appendChild(item);
  }
}

async function loadMessages() {
  const el = document.getElementById('messages');
  el.innerHTML = '';
  if (!selectedKey) return;
  const data = await api('/api/messages/' + encodeURIComponent(selectedKey));
  for (const m of data.messages) {
    const div = document.createElement('div');
    div.className = 'msg ' + (m.from_user ? 'user' : 'bot');
    div.textContent = m.text;
    const ts = document.createElement('span');
    ts.className = 'ts';
    ts.textContent = new Date(m.timestamp).toLocaleString();
    div.appendChild(ts);
    el.appendChild(div);
  }
  el.scrollTop = el.scrollHeight;
}

async function loadPrompt() {
  const data = await api('/api/prompt');
  document.getElementById('prompt').value = data.prompt;
  document.getElementById('prompt-status').textContent = data.default ? 'Using default prompt' : '';
}

document.getElementById('prompt-save').addEventListener('click', async () => {
  const status = document.getElementById('prompt-status');
  try {
    await api('/api/prompt', {method: 'POST', body: JSON.stringify({prompt: document.getElementById('prompt').value})});
    status.textContent = 'Saved';
  } catch (err) {
    status.textContent = 'Save failed';
  }
});

async function refresh() {
  try {
    await Promise.all([loadConversations(), loadPrompt()]);
    if (selectedKey) await loadMessages();
  } catch (err) { /* login shown on 401 */ }
}

refresh();
setInterval(refresh, 10000);
</script>
</body>
</html>
`
