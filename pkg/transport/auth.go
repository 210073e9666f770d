package transport

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"
)

// AuthOptions selects and parameterizes the SSH authentication
// methods. Methods are tried in the order listed below.
type AuthOptions struct {
	// KeyPath is the path to a private key file. Empty disables
	// key-file auth.
	KeyPath string

	// KeyPassphrase decrypts an encrypted key file. Empty triggers an
	// interactive prompt when the key turns out to be encrypted.
	KeyPassphrase string

	// UseAgent adds the ssh-agent at SSH_AUTH_SOCK.
	UseAgent bool

	// Password adds password auth with the given secret.
	Password string

	// PromptPassword adds password auth that asks on the terminal.
	PromptPassword bool
}

// BuildAuthMethods assembles the ordered list of SSH authentication
// methods from options. At least one method must result.
func BuildAuthMethods(opts *AuthOptions) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if opts.KeyPath != "" {
		m, err := publicKeyAuth(opts.KeyPath, opts.KeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", opts.KeyPath, err)
		}
		methods = append(methods, m)
	}

	if opts.UseAgent {
		m, err := agentAuth()
		if err != nil {
			return nil, fmt.Errorf("ssh-agent: %w", err)
		}
		methods = append(methods, m)
	}

	if opts.Password != "" {
		methods = append(methods, ssh.Password(opts.Password))
	} else if opts.PromptPassword {
		methods = append(methods, ssh.PasswordCallback(promptPassword))
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("no SSH authentication methods configured")
	}
	return methods, nil
}

// HostKeyCallback builds the host-key verifier. With strict off the
// server key is accepted blindly, which is only acceptable for
// development setups.
func HostKeyCallback(strict bool, knownHostsFile string) (ssh.HostKeyCallback, error) {
	if !strict {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	path := knownHostsFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locate known_hosts: %w", err)
		}
		path = home + "/.ssh/known_hosts"
	}

	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("known_hosts %s: %w", path, err)
	}
	return cb, nil
}

func publicKeyAuth(keyPath, passphrase string) (ssh.AuthMethod, error) {
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("reading key: %w", err)
	}

	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
		if err != nil {
			return nil, fmt.Errorf("decrypting key: %w", err)
		}
		return ssh.PublicKeys(signer), nil
	}

	signer, err = ssh.ParsePrivateKey(data)
	if err != nil {
		// Encrypted key without a configured passphrase: ask.
		if _, ok := err.(*ssh.PassphraseMissingError); ok {
			fmt.Fprintf(os.Stderr, "Enter passphrase for %s: ", keyPath)
			pass, err2 := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(os.Stderr)
			if err2 != nil {
				return nil, fmt.Errorf("reading passphrase: %w", err2)
			}
			signer, err = ssh.ParsePrivateKeyWithPassphrase(data, pass)
			if err != nil {
				return nil, fmt.Errorf("decrypting key: %w", err)
			}
		} else {
			return nil, fmt.Errorf("parsing key: %w", err)
		}
	}
	return ssh.PublicKeys(signer), nil
}

func agentAuth() (ssh.AuthMethod, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, fmt.Errorf("SSH_AUTH_SOCK is not set")
	}

	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("connecting to agent: %w", err)
	}

	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers), nil
}

func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pass), nil
}
